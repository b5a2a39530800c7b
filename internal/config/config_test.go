package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{"ADMIN_PASSWORD": "clave"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "productos.db", cfg.DBPath)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "200000", cfg.MinimumOrder.String())
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.CheckoutRateWindow)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)

	hash, found := cfg.AdminUsers["admin"]
	require.True(t, found)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("clave")))
}

func TestAdminUsersList(t *testing.T) {
	h1, err := bcrypt.GenerateFromPassword([]byte("uno"), bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := bcrypt.GenerateFromPassword([]byte("dos"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg, err := fromViper(newViper(map[string]any{
		"ADMIN_USERS": "rocio:" + string(h1) + ", mario:" + string(h2),
	}))
	require.NoError(t, err)
	assert.Len(t, cfg.AdminUsers, 2)
	assert.Equal(t, string(h2), cfg.AdminUsers["mario"])
	assert.NotContains(t, cfg.AdminUsers, "admin")
}

func TestInvalidSettings(t *testing.T) {
	cases := map[string]map[string]any{
		"minimum not a number": {"PEDIDO_MINIMO": "mucho"},
		"negative minimum":     {"PEDIDO_MINIMO": "-1"},
		"admin entry no hash":  {"ADMIN_USERS": "rocio"},
		"admin entry plain":    {"ADMIN_USERS": "rocio:secreto"},
		"no admin at all":      {"ADMIN_PASSWORD": ""},
		"empty db path":        {"DB_PATH": ""},
		"zero upload size":     {"MAX_UPLOAD_MB": 0},
		"events without topic": {"EVENTS_ENABLED": true, "KAFKA_TOPIC": ""},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fromViper(newViper(overrides))
			assert.Error(t, err)
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitCSV(" a:9092, ,b:9092 "))
	assert.Empty(t, splitCSV(""))
}
