// Package config handles loading and validating robotlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Expanding {robot_name} and {base_path} placeholders
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - Private key paths point at files that must be readable only by the robot user
//
// Usage:
//
//	cfg, err := config.Load("configs/robotlink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Session.Topic)
//
// Example settings:
//
//	robot:
//	  name: "rover-07"
//	  base_path: "/etc/robotlink"
//	mqtt:
//	  broker:
//	    host: "a1b2c3-ats.iot.eu-west-1.amazonaws.com"
//	    port: 8883
//	    tls: true
//	    client_id: "{robot_name}"
//	  tls:
//	    cert_file: "{base_path}/certs/{robot_name}.cert.pem"
//	    key_file: "{base_path}/certs/{robot_name}.private.key"
//	session:
//	  topic: "robots/{robot_name}/commands"
//	  receive_count: 0
package config
