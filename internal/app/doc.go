// Package app composes a running diamond node.
//
// It wires configuration, logging, the state journal, the cut guard, the
// bootstrap manifest and the HTTP surface:
//
//	config.Config ──► Application
//	                    ├── diamond.Diamond (guard, events, metrics, journal)
//	                    ├── manifest bootstrap
//	                    └── http.Server (httpapi + middleware)
//
// Application is the only package that knows about every other one; the
// diamond core never imports it.
package app
