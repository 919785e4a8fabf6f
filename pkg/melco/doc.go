// Package melco provides a client for monitoring and controlling Mitsubishi
// multi-zone air conditioning groups through the XML-over-HTTP protocol
// exposed by a central building controller.
//
// # Basic Usage
//
//	client, err := melco.NewClient("192.168.1.60")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state, err := client.GetGroupState(ctx, "5")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = client.SetMode(ctx, "5", melco.ModeCool)
//
// Set operations only report that the controller accepted the request. The
// new state becomes visible on the next GetGroupState call.
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := melco.NewClient("192.168.1.60",
//	    melco.WithPort(8080),
//	    melco.WithRequestTimeout(3*time.Second),
//	    melco.WithLogger(slog.Default()),
//	)
//
// # Protocol
//
// Every request is an HTTP POST of a Packet document to
// /servlet/MIMEReceiveServlet with Content-Type text/xml:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<Packet>
//	  <Command>getRequest</Command>
//	  <DatabaseManager><Mnet Group="5" Drive="*" Mode="*"/></DatabaseManager>
//	</Packet>
//
// A getRequest carries the wildcard "*" for every requested attribute and a
// setRequest carries literal values. The response mirrors the request with
// the wildcards filled in. The protocol has no authentication and no TLS.
package melco
