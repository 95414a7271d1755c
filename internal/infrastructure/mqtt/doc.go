// Package mqtt provides the robot's MQTT transport.
//
// This package manages:
//   - Background connection to the managed broker with mutual TLS
//   - Optional HTTP CONNECT proxy tunnelling
//   - Auto-reconnect with subscription restore after the first connection
//   - Asynchronous Subscribe, Unsubscribe and Publish returning a Token
//   - Retained presence with Last Will and Testament (LWT)
//
// # Events
//
// Start does not block. Progress is reported through the Events interface:
//
//	Client.Start ──► OnConnectionFailure* ──► OnConnectionSuccess (once)
//	   inbound PUBLISH ──► OnPublishReceived
//	Client.Stop  ──► OnStopped (once)
//
// # Security Considerations
//
//   - TLS 1.2 is the minimum; the client certificate authenticates the robot
//   - Port 443 connections negotiate ALPN "x-amzn-mqtt-ca"
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(10 * time.Second)
//
//	client.Start(events)
//	// after events.OnConnectionSuccess:
//	ack, err := client.Subscribe("robots/rover-07/commands", 1).Wait(ctx, timeout)
package mqtt
