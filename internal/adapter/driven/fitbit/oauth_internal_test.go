package fitbit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenRefresher_NilClientGetsTimeout(t *testing.T) {
	refresher := NewTokenRefresher("client-id", "client-secret", "http://127.0.0.1:1", "", nil)

	require.NotNil(t, refresher.httpClient)
	assert.Equal(t, RefreshTimeout, refresher.httpClient.Timeout)
}
