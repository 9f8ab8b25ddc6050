// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then a JSON file, then environment
// variables prefixed with CWMANAGER (for example CWMANAGER_LOG_LEVEL). A
// missing default file is not an error; a missing explicit file is.
package config
