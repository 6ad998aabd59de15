// Package restclient is a small REST client with pluggable authentication
// adapters and per-status response handlers.
//
// A Client joins each call path onto its base URL, hands the request to its
// Adapter (which attaches credentials and talks to a transport.Transport) and
// routes the Result through the handler registered for its status code,
// falling back to the default handler.
//
//	t, _ := transport.NewHTTPTransport(nil)
//	c := restclient.New(
//		restclient.WithBaseURL("https://api.example.com/v1"),
//		restclient.WithAdapter(oauth.New(t,
//			oauth.WithAuthURL("https://auth.example.com/token"),
//			oauth.WithClientCredentials(id, secret),
//			oauth.WithRequestToken(code),
//		)),
//	)
//	c.RegisterResponseHandler(restclient.StatusKey(404), restclient.Named(restclient.OperationRaiseForStatus))
//
//	res, err := c.Get(ctx, "/users/1", nil)
//
// Handlers are either a HandlerFunc or a Named reference to an operation
// registered on the client. Non-2xx responses are ordinary Results unless a
// handler turns them into errors.
package restclient
