// Package config loads and validates the daemon's settings file.
//
// Settings are a single JSON document, found at killjoy/settings.json under
// the XDG config directories:
//
//	{
//	  "version": 1,
//	  "rules": [
//	    {
//	      "active_states": ["failed"],
//	      "bus_type": "session",
//	      "expression": "syncthing.service",
//	      "expression_type": "unit name",
//	      "notifiers": ["desktop popup"]
//	    }
//	  ],
//	  "notifiers": {
//	    "desktop popup": {
//	      "bus_type": "session",
//	      "bus_name": "com.kennep.KilljoyNotifierNotification1"
//	    }
//	  }
//	}
//
// Validation is all-or-nothing: a settings document either passes every
// check (schema version, state names, bus scopes, expression compilation,
// notifier references, bus name syntax) or is rejected as a whole. Rule
// expressions are compiled once during validation; the resulting matchers
// are immutable and safe for concurrent use.
//
// Settings are immutable after loading. Changing them requires a daemon
// restart; there is no hot reload.
package config
