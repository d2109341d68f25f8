package models

// Account is a registered user. Password always holds a bcrypt hash.
type Account struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"uniqueIndex;type:varchar(150);not null"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(254);not null"`
	Password string `json:"-" gorm:"type:varchar(128);not null"` // never serialised
}

// TableName pins the table to "accounts".
func (Account) TableName() string {
	return "accounts"
}
