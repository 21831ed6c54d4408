// Package scenario runs scripted CRUD sequences against an entity store and
// records every observer delivery they cause.
//
// Scenarios are YAML files:
//
//	name: mail_on_create
//	description: the mailer hears creates only, the auditor hears everything
//	observers:
//	  - name: mailer
//	    events: [entity:created]
//	  - name: auditor
//	steps:
//	  - op: create
//	    as: grace
//	    attrs: {name: Grace, email: grace@example.com}
//	  - op: delete
//	    ref: grace
//	assertions:
//	  - type: trace_count
//	    observer: mailer
//	    event: entity:created
//	    count: 1
//
// Identifiers are allocated as id-1, id-2, ... so the recorded trace is
// deterministic and can be compared against a golden file.
package scenario
