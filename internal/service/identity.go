package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// IdentityService 把外部的访客标识解析为内部用户，并签发访问令牌。
// 外部标识只以 blake2b 摘要保存。
type IdentityService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewIdentityService 创建 IdentityService 实例。
// jwtExpiryHours 定义 token 过期的小时数。
func NewIdentityService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*IdentityService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for IdentityService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &IdentityService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// HashGuestID 访客标识的存储形式
func HashGuestID(guestID string) string {
	sum := blake2b.Sum256([]byte(guestID))
	return hex.EncodeToString(sum[:])
}

// ResolveGuest 第一次见到的访客会创建新用户，之后总是返回同一个内部用户。
func (s *IdentityService) ResolveGuest(ctx context.Context, guestID, displayName string) (*domain.User, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, fmt.Errorf("%w: guest id is required", ErrInvalidInput)
	}
	displayName = strings.TrimSpace(displayName)
	hash := HashGuestID(guestID)
	now := time.Now().UTC()

	user, err := s.userRepo.FindByGuestKeyHash(ctx, hash)
	if err == nil {
		if err := s.userRepo.TouchLastSeen(ctx, user.ID, displayName, now); err != nil {
			logrus.WithField("user_id", user.ID).WithError(err).Warn("Failed to touch user")
		}
		user.LastSeenAt = now
		if displayName != "" {
			user.DisplayName = displayName
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logrus.WithError(err).Error("Failed to look up guest")
		return nil, ErrInternalServer
	}

	user = &domain.User{
		ID:           uuid.NewString(),
		GuestKeyHash: hash,
		DisplayName:  displayName,
		LastSeenAt:   now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 同一个访客的并发请求
			existing, findErr := s.userRepo.FindByGuestKeyHash(ctx, hash)
			if findErr != nil {
				return nil, mapRepoError(findErr, ErrUserNotFound)
			}
			return existing, nil
		}
		logrus.WithError(err).Error("Failed to create guest user")
		return nil, ErrInternalServer
	}
	logrus.WithField("user_id", user.ID).Info("New guest user created")
	return user, nil
}

// IssueToken 签发 HS256 令牌，user_id 声明为内部用户 ID
func (s *IdentityService) IssueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"name":    user.DisplayName,
		"iat":     now.Unix(),
		"exp":     now.Add(s.jwtExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		logrus.WithField("user_id", user.ID).WithError(err).Error("Failed to sign token")
		return "", ErrInternalServer
	}
	return signed, nil
}

// GetUser 按内部 ID 读取用户
func (s *IdentityService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("user_id", userID).WithError(err).Error("Failed to load user")
		}
		return nil, mapRepoError(err, ErrUserNotFound)
	}
	return user, nil
}
