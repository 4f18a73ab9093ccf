// Command subtitler runs the burned-in caption service and its local
// utilities: serve, burn, captions render, config and doctor.
package main
