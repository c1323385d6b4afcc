package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/config"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/cache"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/notifications"
)

func TestNewNotifier(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{
			name:    "release without twilio credentials",
			cfg:     config.Config{GinMode: gin.ReleaseMode, SMSProvider: config.SMSProviderTwilio, SMTPHost: "smtp.local"},
			wantErr: true,
		},
		{
			name:    "release without smtp host",
			cfg:     config.Config{GinMode: gin.ReleaseMode, SMSProvider: config.SMSProviderTwilio, TwilioSID: "AC1", TwilioToken: "tok"},
			wantErr: true,
		},
		{
			name: "release with explicit log provider",
			cfg:  config.Config{GinMode: gin.ReleaseMode, SMSProvider: config.SMSProviderLog},
		},
		{
			name: "debug falls back to the log",
			cfg:  config.Config{GinMode: gin.DebugMode, SMSProvider: config.SMSProviderTwilio},
		},
		{
			name: "release fully configured",
			cfg: config.Config{GinMode: gin.ReleaseMode, SMSProvider: config.SMSProviderTwilio,
				TwilioSID: "AC1", TwilioToken: "tok", SMTPHost: "smtp.local"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			n, err := newNotifier(context.Background(), &cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, n)
		})
	}
}

func TestNewNotifier_LoggedCodesAreNotDelivered(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := newNotifier(context.Background(), &config.Config{GinMode: gin.DebugMode, SMSProvider: config.SMSProviderLog}, log)
	require.NoError(t, err)

	assert.ErrorIs(t, n.SendSMSOTP(context.Background(), "+10000000001", "123456", time.Minute), notifications.ErrNotDelivered)
	assert.ErrorIs(t, n.SendEmailOTP(context.Background(), "a@x.com", "123456", time.Minute), notifications.ErrNotDelivered)
}

func TestCloseInfra(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c := cache.NewRedis(mr.Addr(), "", 0)

	closeInfra(db, c)

	assert.Error(t, sqlDB.Ping())
	assert.Error(t, c.Client.Ping(context.Background()).Err())
}
