package sourceloader

import "github.com/dsandbox/rewriter/classfile"

// parseHeader decodes just enough of a class file to answer the
// hierarchy questions LoadClassHeader promises. It delegates to
// classfile.Decode rather than a second, leaner parser: LoadClassHeader
// caches its result per name, so the cost of a full decode is paid once
// per class per loader, not once per hierarchy-walk step.
func parseHeader(internalName string, data []byte) (ClassHeader, error) {
	rec, err := classfile.Decode(data)
	if err != nil {
		return ClassHeader{}, err
	}
	return ClassHeader{
		Name:        internalName,
		Super:       rec.Super,
		Interfaces:  rec.Interfaces,
		Access:      uint16(rec.Access),
		IsThrowable: rec.Super == "java/lang/Throwable",
	}, nil
}
