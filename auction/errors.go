package auction

import "errors"

// 競標引擎與結算服務共用的錯誤分類
// ErrForbidden 與 ErrInvalidState 刻意分開：前者是擁有權不符，
// 後者是生命週期狀態不符，客戶端需要能區分這兩種情況
var (
	// ErrNotFound 表示拍賣、訂單或使用者不存在
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden 表示操作者不是資源的擁有者
	ErrForbidden = errors.New("not the owner")
	// ErrInvalidState 表示拍賣目前的狀態不允許這個操作
	ErrInvalidState = errors.New("invalid auction state")
	// ErrValidation 表示出價低於底價，或價格、數量不是正數
	ErrValidation = errors.New("validation failed")
	// ErrConflict 表示同一筆得標紀錄已經建立過訂單
	ErrConflict = errors.New("order already exists")
	// ErrUnreadable 表示帳本中的紀錄無法反序列化
	// 讀取時會記錄並跳過這種紀錄，不會讓整次讀取失敗
	ErrUnreadable = errors.New("record unreadable")
)
