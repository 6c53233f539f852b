package interp

// Capsule wraps an opaque host value under a name. The name acts as a
// revocation token: consumers must present it on every access, and renaming
// the capsule invalidates every stale reference that still floats around in
// application code.
func (rt *Runtime) Capsule(name string, payload any) Object {
	v := newValue(KindCapsule)
	v.capName = name
	v.capValue = payload
	return Object{v}
}

// CapsuleGet returns the payload if the presented name matches the capsule's
// current one. No error is set on mismatch; the caller decides how to raise.
func (o Object) CapsuleGet(name string) (any, bool) {
	if o.v == nil || o.v.kind != KindCapsule || o.v.capName != name {
		return nil, false
	}

	return o.v.capValue, true
}

// CapsuleSetName renames the capsule.
func (o Object) CapsuleSetName(name string) bool {
	if o.v == nil || o.v.kind != KindCapsule {
		return false
	}

	o.v.capName = name
	return true
}
