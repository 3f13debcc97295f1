package model

// User はデモ用のユーザーアカウントを表す。
// 現在のフォームフローでは使用されないが、ストレージのインターフェースには含まれる。
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	// Password は不透明な文字列として保存する。ハッシュ化はこのデモの範囲外。
	Password string `json:"-"`
}

// NewUser はユーザー作成時の入力を表す。
type NewUser struct {
	Username string
	Password string
}
