package model

// PushReceiver 推送通知的接收端点
type PushReceiver struct {
	Common
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Token    string `json:"-"`
	Enabled  bool   `gorm:"index" json:"enabled"`
}
