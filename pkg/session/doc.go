/*
Package session keeps the live engines of a server process.

Each session is one engine with its own network, change log and interaction
loop. The Manager serializes callers per session with reference-counted local
locks, optionally backed by a distributed locker so replicas sharing a
journal do not interleave triggers on the same session.
*/
package session
