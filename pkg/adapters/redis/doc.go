// Package redis publishes service events to a Redis stream for auditing.
package redis
