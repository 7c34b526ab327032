// Command nixgen builds, activates, inspects, and garbage-collects system
// configuration generations.
package main
