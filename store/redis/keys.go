package redis

// Redis key naming conventions for foreman data.
// All keys are prefixed with "foreman:" to avoid collisions.

const keyPrefix = "foreman:"

// jobKey returns the Hash key for a job entity: foreman:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// readyKey returns the Sorted Set of due pending jobs for a queue,
// scored by claim order: foreman:queue:{name}:ready
func readyKey(queue string) string { return keyPrefix + "queue:" + queue + ":ready" }

// delayedKey returns the Sorted Set of not-yet-due pending jobs for a
// queue, scored by due time: foreman:queue:{name}:delayed
func delayedKey(queue string) string { return keyPrefix + "queue:" + queue + ":delayed" }

// leasedKey returns the Sorted Set of processing jobs for a queue,
// scored by lease time: foreman:queue:{name}:leased
func leasedKey(queue string) string { return keyPrefix + "queue:" + queue + ":leased" }

// dedupeKey returns the String key holding the job ID that owns a dedupe
// key: foreman:dedupe:{key}
func dedupeKey(key string) string { return keyPrefix + "dedupe:" + key }
