package descriptor

// TerminatingDescriptor (ECMA-167 §3.10.9) ends a Volume Descriptor
// Sequence before its allotted extent is exhausted.
type TerminatingDescriptor struct {
	Tag Tag
}

const tagIdentTerminating uint16 = 8

// MarshalTerminatingDescriptor encodes a Terminating Descriptor: a tag with
// no body.
func MarshalTerminatingDescriptor(t TerminatingDescriptor) []byte {
	tagBytes := FinalizeTag(t.Tag, nil)
	return tagBytes[:]
}

// UnmarshalTerminatingDescriptor decodes and verifies one.
func UnmarshalTerminatingDescriptor(data []byte, readPosition uint32) (TerminatingDescriptor, error) {
	tag, err := VerifyRaw(data, readPosition, tagIdentTerminating)
	if err != nil {
		return TerminatingDescriptor{}, err
	}
	return TerminatingDescriptor{Tag: tag}, nil
}
