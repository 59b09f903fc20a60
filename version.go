// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package main

const version = "v0.1.0"
