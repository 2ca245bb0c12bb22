package user

import (
	"errors"
	"time"
)

// User ドメインのエラー定義
var ErrUserNotFound = errors.New("ユーザーが見つかりません")

// User はユーザーの読み取り専用参照を表す
// 本体は外部のアイデンティティ基盤が所有し、ここでは価格計算と表示にのみ使う
type User struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	University      string
	ESNCardNumber   *string
	ESNCardVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MemberPriceEligible は会員価格の適用対象かを返す
func (u *User) MemberPriceEligible() bool {
	return u.ESNCardVerified
}
