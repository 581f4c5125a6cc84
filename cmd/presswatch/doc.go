// Command presswatch is the control CLI for the presswatch daemon.
// Every subcommand talks to a running presswatchd over its unix
// socket; nothing here touches the queue database directly.
package main
