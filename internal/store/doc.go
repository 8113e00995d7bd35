// ABOUTME: Package documentation for the store package
// ABOUTME: Explains the thread item log model and pagination contract

/*
Package store provides persistence for conversation threads, their
append-only item logs, and the fact ledger.

# Data model

A Thread owns an ordered, append-only log of Items. Each Item is one of
three kinds:

  - user_message: an inbound message from the end user
  - assistant_message: a finalized assistant reply
  - hidden_context: a tool-written record that future model turns can see
    but that is never rendered in the user-facing transcript

Items are immutable once appended. Ordering is by Seq, a per-thread
monotonic sequence number assigned at append time; ties cannot occur
because appends for one thread are serialized by the orchestrator.

# Pagination

LoadItems implements cursor-based pagination. The caller passes the Seq of
the last item it has seen (or nil to start) plus a limit and direction.
The returned ItemPage reports whether more items remain and the cursor to
continue from. The orchestrator reads the newest page in descending order
and reverses it before building model input.

# Implementations

SQLiteStore is the production implementation. It creates its schema on
open and applies idempotent migrations, following WAL journaling for
concurrent readers.
*/
package store
