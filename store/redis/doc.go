// Package redis implements store.Store using Redis for high-throughput
// workloads that can trade Postgres durability for speed.
//
// Each job lives in a Hash under foreman:job:<id>. Per queue, three
// Sorted Sets index the job by phase: ready (scored by priority and due
// time), delayed (scored by due time in milliseconds), and leased
// (scored by lease time in milliseconds, so lease age is a range query).
// A job is a member of at most one of the three. Claim moves the member
// and writes the lease inside a Lua script, which is what makes the
// claim atomic under concurrent workers. Dedupe keys are plain String
// keys taken with SETNX.
//
// The caller owns the Redis client lifecycle; the store never closes it:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
