package hostfuncs

// HostFuncBundle is the set of functions of one import namespace.
type HostFuncBundle interface {
	Namespace() string
	Funcs() []HostFunc
}

type staticBundle struct {
	namespace string
	funcs     []HostFunc
}

func (b *staticBundle) Namespace() string { return b.namespace }

func (b *staticBundle) Funcs() []HostFunc { return b.funcs }

// NewBundle groups funcs under namespace ns.
func NewBundle(ns string, funcs ...HostFunc) HostFuncBundle {
	return &staticBundle{namespace: ns, funcs: funcs}
}

// AllBundles returns every built-in namespace bound to session.
func AllBundles(s *Session) []HostFuncBundle {
	return []HostFuncBundle{
		NewEnvBundle(s),
		NewStdBundle(s),
		NewHTMLBundle(s),
		NewNetBundle(s),
		NewJSBundle(s),
		NewCanvasBundle(s),
		NewDefaultsBundle(s),
	}
}

// WithBundle registers all functions from one or more bundles.
func WithBundle(bundles ...HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for _, bundle := range bundles {
			for _, hf := range bundle.Funcs() {
				if err := b.addFunc(bundle.Namespace(), hf); err != nil {
					b.errors = append(b.errors, err)
				}
			}
		}
	}
}
