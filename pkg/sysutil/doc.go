// Package sysutil holds command builders and multi-step helpers for common
// machine setup chores: rebooting and waiting for the host to come back,
// inspecting block devices, formatting and mounting a partition, swap, CPU
// frequency governor, and group membership.
//
// Builders return an sshutil.Command for the caller to run. Helpers take an
// sshutil.Executor and issue a fixed sequence of commands through it, so they
// work the same against a live *sshutil.Shell or a scripted one in tests.
package sysutil
