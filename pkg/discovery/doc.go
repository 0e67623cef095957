// Package discovery finds MQTT brokers on the local network with
// mDNS/DNS-SD.
//
// Brokers advertise one of two service types:
//
//	_mqtt._tcp         plain MQTT (usually port 1883)
//	_secure-mqtt._tcp  MQTT over TLS (usually port 8883)
//
// Entries seen on several interfaces are aggregated by instance name, so a
// broker is reported once with the addresses of every interface. TXT
// records are passed through as a key/value map.
package discovery
