// Package events renders and distributes server and deployable events.
//
// Components emit through the Sink interface:
//
//	sink.Emit(events.ReasonServerStarted, events.EventData{Server: "tomcat"})
//
// The Dispatcher renders a message from the reason's template, logs it, calls the
// registered listeners and delivers the event to channel subscribers without blocking.
package events
