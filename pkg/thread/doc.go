/*
Package thread serializes access to threads.

Only one invocation may advance a thread at a time. The Manager keeps a
reference-counted mutex per thread ID inside the process and, when configured
with a ports.DistributedLocker, also takes a lease shared by every replica.
*/
package thread
