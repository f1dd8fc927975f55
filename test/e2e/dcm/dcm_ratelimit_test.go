package dcm_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/dcm/pkg/dcmsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLogin verifies that login-user is limited per IP + username.
// The strict limit allows 5 attempts per minute.
func TestRateLimitLogin(t *testing.T) {
	baseURL, _ := setupDCMContainer(t, nil)
	client := dcmsdk.NewClient(baseURL)
	ctx := t.Context()

	for i := range 5 {
		_, err := client.LoginUser(ctx, "mallory", "guess")
		assertChannelError(t, err, "User not found")
		t.Logf("attempt %d rejected by the channel", i+1)
	}

	_, err := client.LoginUser(ctx, "mallory", "guess")
	var apiErr *dcmsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected a transport error, got: %v", err)
	require.True(t, apiErr.IsRateLimited())

	// A different username has its own bucket.
	_, err = client.LoginUser(ctx, "trent", "guess")
	assertChannelError(t, err, "User not found")
}
