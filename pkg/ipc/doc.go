// SPDX-License-Identifier: BSD-3-Clause

// Package ipc defines the connection-provider seam services use to reach
// the embedded NATS broker, plus a stub implementation for callers that
// need a service.Service but have no real IPC wired up.
//
// ConnProvider abstracts obtaining an in-process connection without
// depending on how the broker is hosted:
//
//	type ConnProvider interface {
//		InProcessConn() (net.Conn, error)
//	}
//
// A service typically receives one through its Run method and uses it to
// open a *nats.Conn:
//
//	func (s *Service) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
//		nc, err := nats.Connect("", nats.InProcessServer(ipcConn))
//		if err != nil {
//			return err
//		}
//		defer nc.Close()
//		<-ctx.Done()
//		return ctx.Err()
//	}
package ipc
