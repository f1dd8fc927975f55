// Package dcmsdk is a Go client for the DCM service's HTTP transport.
//
// Every channel is a POST to /v1/ipc/{channel} carrying a JSON array of
// positional arguments. The typed helpers wrap Invoke and turn a failed
// channel result into a *ChannelError:
//
//	c := dcmsdk.NewClient("http://localhost:8080")
//	user, err := c.LoginUser(ctx, "alice", "secret")
//	var chErr *dcmsdk.ChannelError
//	if errors.As(err, &chErr) {
//		fmt.Println(chErr.Message) // "Incorrect password"
//	}
//
// Transport failures such as rate limiting come back as *APIError.
package dcmsdk
