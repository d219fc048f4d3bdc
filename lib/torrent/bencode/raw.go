package bencode

// RawMessage holds an already-encoded bencode value verbatim, deferring
// parsing or re-encoding. It is used to carry the "info" dictionary of a
// torrent file through the pipeline as the exact bytes the info-hash was
// computed over, without round-tripping it through Go structs.
type RawMessage []byte

// MarshalBencode returns m unmodified.
func (m RawMessage) MarshalBencode() ([]byte, error) {
	if m == nil {
		return []byte("0:"), nil
	}
	return m, nil
}

// UnmarshalBencode stores a copy of data in m.
func (m *RawMessage) UnmarshalBencode(data []byte) error {
	*m = append((*m)[0:0], data...)
	return nil
}
