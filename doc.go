/*
Package gqlstore implements a client-side normalized cache for GraphQL data.

Query responses are flattened into records keyed by DataID, linked to each
other by id. Readers materialize a Selector back into a tree (a Snapshot) and
subscribe to the records it saw.

We implement:

1. A layered record store. Cached records are restored from a persistent
cache, base records hold the latest server data, queued records hold the
optimistic updates of pending mutations.

2. A record writer that applies one write pass to exactly one layer and
reports created and updated ids.

3. A mutation queue. Transactions sharing a collision key commit one at a
time. After every commit or rollback the queued layer is rebuilt by
replaying the optimistic updates still pending.

4. An incremental garbage collector that evicts base records unreachable
from retained selectors.

5. Serialization of the whole store, in MsgPack or JSON.

# Technical Details

**Client ids.**
Objects without a server id get a client id derived from their parent and
storage key ("client:<parent>:<key>"), so refetching the same path yields the
same record.

**Storage keys.**
A field is stored under its name followed by the JSON of its non-null
arguments. Connections drop pagination arguments, so all fetched pages of a
connection share one record and its Range.

**Threading.**
An Environment is single-threaded. Network completions may arrive on any
goroutine; they are posted to the Executor and handled in order with
everything else.

The diskcache subpackage provides a CacheManager backed by Bolt.
*/
package gqlstore
