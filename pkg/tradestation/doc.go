// Package tradestation is the caller-facing client of the brokerage API.
//
// A Client is built from a config.Config. It authenticates with OAuth 2.0
// (browser login or a caller supplied AuthorizationGrant), keeps the access
// token fresh, retries a request once after a 401, and opens stream sessions
// that reconnect on their own.
//
//	cfg, err := config.Load("")
//	client, err := tradestation.New(cfg)
//	_, err = client.LoginWithBrowser(ctx, nil)
//	session, err := client.StreamBars(ctx, brokerage.BarStreamRequest{Symbol: "MSFT"},
//		stream.HandlerFuncs{Data: onBar})
//	defer client.CloseStream(session)
package tradestation
