// Package discovery finds components by reading YAML manifests from a
// directory and watches that directory, and the intent files, for changes.
//
// A manifest describes one component:
//
//	id: 4e69383e-044d-4786-9077-5f8e5b259793
//	name: PluginNeedsServiceC
//	version: 1.2.0
//	provides: [ServiceC]
//	requires:
//	  - service: ServiceB
//	    level: MustExistAndRun
//	hooks:
//	  start: "echo starting {{ .Name | lower }}"
//	  stop: "echo stopping {{ .Name }}"
//
// LoadDir returns the valid manifests as a catalog in file-name order, plus
// a config.ConfigurationErrorCollection for the invalid ones.
package discovery
