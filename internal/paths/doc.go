// Package paths provides platform-appropriate default locations for the
// server's files.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The application name "sqmean" is used as the
// subdirectory under each base path.
package paths
