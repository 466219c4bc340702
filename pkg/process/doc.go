// SPDX-License-Identifier: BSD-3-Clause

// Package process bridges a service.Service into an oversight.ChildProcess,
// so services can be supervised as children of an oversight tree.
//
// New wraps a service.Service's Run method, recovering any panic into an
// error that names the panicking service:
//
//	svc := &myService{name: "eventbus"}
//	child := process.New(svc, ipcConn)
//
//	tree := oversight.New(oversight.NeverHalt())
//	tree.Add(child, oversight.Transient(), oversight.Timeout(10*time.Second), svc.Name())
//	tree.Start(ctx)
package process
