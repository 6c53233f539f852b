package was

// OpenTransport is installed at init time by the transport binding that links
// the external WAS channel library into the binary. The bridge itself only
// depends on the Transport contract, never on the wire framing.
var OpenTransport func() (Transport, error)
