// Package client is the Go SDK for a chainledger service.
//
// Reads are public:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.Verify(ctx)
//	fmt.Println(res.Valid)
//
// Appends need a write token when the service has auth.write_secret set
// (mint one with 'ledger token'):
//
//	c, _ := client.New(base, client.WithBearerToken(token))
//	rec, err := c.Append(ctx, "shipment 42 received")
//
// Search reports a miss as ErrNotFound:
//
//	rec, err := c.Search(ctx, "shipment 42 received")
//	if errors.Is(err, client.ErrNotFound) {
//	    // no such payload
//	}
package client
