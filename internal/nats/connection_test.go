package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	c := DefaultConnectionConfig("nats://localhost:4222")
	assert.Equal(t, "nats://localhost:4222", c.URL)
	assert.Equal(t, "prism", c.Name)
	assert.Equal(t, -1, c.MaxReconnects)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestOptionsSelectAuthentication(t *testing.T) {
	c := DefaultConnectionConfig("nats://localhost:4222")
	base := len(c.options())

	c.Token = "secret"
	assert.Len(t, c.options(), base+1)

	c.Token = ""
	c.Username = "user"
	assert.Len(t, c.options(), base, "username without password is ignored")

	c.Password = "pass"
	assert.Len(t, c.options(), base+1)
}

func TestConnectValidation(t *testing.T) {
	_, err := Connect(context.Background(), nil)
	assert.Error(t, err)

	_, err = Connect(context.Background(), DefaultConnectionConfig(""))
	assert.Error(t, err)
}

func TestConnectHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := DefaultConnectionConfig("nats://127.0.0.1:1")
	c.Timeout = 100 * time.Millisecond
	conn, err := Connect(ctx, c)
	require.Error(t, err)
	assert.Nil(t, conn)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
