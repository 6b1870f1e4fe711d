package lvb

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoomClaims 视频房间令牌携带的信息
type RoomClaims struct {
	AppKey   string `json:"app_key"`
	RoomID   int64  `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Duration int64  `json:"duration"`
	jwt.RegisteredClaims
}

// Signer 用 AppSecret 签发房间令牌，对会议逻辑而言令牌是不透明字符串
type Signer struct {
	appKey string
	secret []byte
	now    func() time.Time
}

func NewSigner(appKey, appSecret string) *Signer {
	return &Signer{appKey: appKey, secret: []byte(appSecret), now: time.Now}
}

func (s *Signer) AppKey() string {
	return s.appKey
}

// Sign 令牌有效期等于会议时长
func (s *Signer) Sign(roomID, userID int64, duration time.Duration) (string, error) {
	now := s.now()
	claims := RoomClaims{
		AppKey:   s.appKey,
		RoomID:   roomID,
		UserID:   userID,
		Duration: int64(duration.Seconds()),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
