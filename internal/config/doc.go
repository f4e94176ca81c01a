// Package config loads and validates the overseer configuration.
//
// Configuration lives in a single config.yaml inside the configuration directory
// (default ~/.config/overseer, overridable with --config-path):
//
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  address: ":9090"
//	servers:
//	  - name: tomcat
//	    type: tomcat
//	    autoStart: true
//	    autoPublish: true
//	    attributes:
//	      server.home: /opt/tomcat
//	      server.port: 8080
//	      server.timeout.startup: 90s
//	    deployables:
//	      - label: shop
//	        path: /src/shop/target/shop.war
//
// Server attributes are an untyped map in YAML and are read through Attributes, whose
// getters convert values with spf13/cast and fall back to a caller supplied default.
package config
