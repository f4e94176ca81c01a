// Package launcher creates and terminates the OS processes of a managed server.
//
// A start or stop attempt produces a Launch: the set of Process handles it spawned
// together with the launch mode. The lifecycle core only depends on the StartLauncher
// and ShutdownLauncher interfaces; CommandLauncher is the exec based implementation
// driven by templated command lines from the configuration:
//
//	start:
//	  - command: '{{ .Attr "server.home" }}/bin/catalina.sh'
//	    args: ['{{ if .Debug }}jpda{{ end }}', run]
//
// Templates have the sprig function library available. Spawned commands run in their
// own process group; their output is streamed into the log.
package launcher
