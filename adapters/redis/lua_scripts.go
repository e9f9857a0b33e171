package redis

import "github.com/redis/go-redis/v9"

// appendBidScript 用於原子地受理一筆出價
//
//	KEYS[1] - 出價帳本的 ZSET 鍵
//	KEYS[2] - 底價鍵
//	KEYS[3] - 出價事件的 stream
//	ARGV[1] - 出價金額（ZSET 分數）
//	ARGV[2] - 序列化後的出價紀錄（ZSET 成員）
//	ARGV[3] - TTL 秒數
//	ARGV[4] - 拍賣 ID
//
// 返回值: 寫入後帳本中的出價筆數
//
// 流程:
//   - 1. 將出價加入帳本
//   - 2. 更新帳本與底價鍵的 TTL（孤兒保險，業務邏輯不依賴它）
//   - 3. 將出價事件寫入 stream，讓各節點廣播給房間內的訂閱者
var appendBidScript = redis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
if redis.call('EXISTS', KEYS[2]) == 1 then
    redis.call('EXPIRE', KEYS[2], ARGV[3])
end
redis.call('XADD', KEYS[3], '*', 'auctionId', ARGV[4], 'data', ARGV[2])
return redis.call('ZCARD', KEYS[1])
`)
