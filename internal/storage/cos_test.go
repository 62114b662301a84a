package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *COSConfig
		wantErr string
	}{
		{
			name:    "missing bucket",
			cfg:     &COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"},
			wantErr: "bucket and region are required",
		},
		{
			name:    "missing region",
			cfg:     &COSConfig{Bucket: "profiles", SecretID: "id", SecretKey: "key"},
			wantErr: "bucket and region are required",
		},
		{
			name:    "missing credentials",
			cfg:     &COSConfig{Bucket: "profiles", Region: "ap-guangzhou"},
			wantErr: "credentials are required",
		},
		{
			name: "valid",
			cfg:  &COSConfig{Bucket: "profiles", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewCOSStorage(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, s)
				assert.True(t, errors.IsInvalidArgument(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestCOSStorage_GetURL(t *testing.T) {
	s, err := NewCOSStorage(&COSConfig{
		Bucket:    "profiles",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://profiles.cos.ap-guangzhou.myqcloud.com/runs/r1/stats.yaml",
		s.GetURL(RunKey("r1", "stats.yaml")))
}

func TestNewStorage_COS(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{
		Type:      "cos",
		Bucket:    "profiles",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)
	_, ok := s.(*COSStorage)
	assert.True(t, ok)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{name: "nil", wantErr: "storage config is nil"},
		{name: "unsupported type", cfg: &config.StorageConfig{Type: "s3"}, wantErr: "unsupported storage type"},
		{
			name:    "cos missing bucket",
			cfg:     &config.StorageConfig{Type: "cos", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"},
			wantErr: "COS bucket is required",
		},
		{
			name:    "cos missing region",
			cfg:     &config.StorageConfig{Type: "cos", Bucket: "profiles", SecretID: "id", SecretKey: "key"},
			wantErr: "COS region is required",
		},
		{
			name:    "cos missing credentials",
			cfg:     &config.StorageConfig{Type: "cos", Bucket: "profiles", Region: "ap-guangzhou"},
			wantErr: "COS credentials are required",
		},
		{name: "local missing path", cfg: &config.StorageConfig{Type: "local"}, wantErr: "local storage path is required"},
		{name: "default type needs path", cfg: &config.StorageConfig{}, wantErr: "local storage path is required"},
		{
			name: "valid cos",
			cfg:  &config.StorageConfig{Type: "cos", Bucket: "profiles", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"},
		},
		{name: "valid local", cfg: &config.StorageConfig{Type: "local", LocalPath: "/tmp/storage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
