// Package session coordinates one robot MQTT session.
//
// A session connects to the broker, subscribes to the robot's command topic,
// optionally publishes a message stream, waits for a target number of inbound
// commands, then unsubscribes and stops. Every inbound message is decoded and
// its toolName is handed to a Queue.
//
// Architecture:
//
//	transport goroutines                 controlling goroutine
//	────────────────────                 ─────────────────────
//	OnConnectionSuccess ──► LifecycleGate ◄── AwaitConnected
//	OnConnectionFailure ──► (counted, logged)
//	OnPublishReceived   ──► Dispatcher ──► Queue
//	                          └──► MessageCounter ◄── AwaitTarget
//	OnStopped           ──► LifecycleGate ◄── AwaitStopped
//
// Every wait is bounded by Config.Timeout and by the Run context. A timeout
// at connect, subscribe, unsubscribe or stop ends the run with the matching
// error; the inbound wait is the exception and simply moves on.
//
// # Key Types
//
//   - Coordinator: Runs the lifecycle and implements mqtt.Events
//   - LifecycleGate: One-shot connected and stopped signals
//   - MessageCounter: Arrival count with a completion signal
//   - Dispatcher: JSON decode and enqueue, returning a Result
//
// # Usage
//
//	coord, err := session.NewCoordinator(session.Options{
//	    Config:    session.ConfigFromSettings(cfg),
//	    Transport: mqttClient,
//	    Queue:     actionQueue,
//	    Logger:    log.Component("session"),
//	})
//	if err != nil {
//	    return err
//	}
//	return coord.Run(ctx)
package session
