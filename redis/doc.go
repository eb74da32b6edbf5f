// Package redis provides a go-redis client wrapper with service logging,
// connection pooling and component lifecycle support.
package redis
