package types

// OutputKind selects what kind of Mach-O the linker is producing; several
// resolver/layout decisions (entry point requirement, whether undefineds
// are tolerated, whether -r classic relocations apply) key off this.
type OutputKind uint8

const (
	OutputDynamicExecutable OutputKind = iota
	OutputStaticExecutable
	OutputDynamicLibrary
	OutputDynamicBundle
	OutputObjectFile // -r
	OutputDyld
	OutputPreload
	OutputKextBundle
)

func (k OutputKind) AllowsUndefineds() bool {
	return k == OutputObjectFile
}

type UndefinedTreatment uint8

const (
	UndefinedError UndefinedTreatment = iota
	UndefinedWarning
	UndefinedSuppress
	UndefinedDynamicLookup
)

type WeakReferenceMismatchTreatment uint8

const (
	WeakReferenceMismatchError WeakReferenceMismatchTreatment = iota
	WeakReferenceMismatchWarning
	WeakReferenceMismatchSuppress
	WeakReferenceMismatchWeak
	WeakReferenceMismatchNonWeak
)

type CommonsMode uint8

const (
	CommonsModeTreatAsDefinitions CommonsMode = iota
	CommonsModeTreatAsTentativeDefinitions
)

type ExportMode uint8

const (
	ExportModeDefault ExportMode = iota
	ExportModeSome
	ExportModeDontExportSome
)

type LibrarySearchMode uint8

const (
	LibrarySearchDylibAndArchiveEachDir LibrarySearchMode = iota
	LibrarySearchAllDirsDylibsThenArchives
)

type InterposeMode uint8

const (
	InterposeModeNone InterposeMode = iota
	InterposeModeAll
	InterposeModeSome
)

// AliasPair is one `-alias realName aliasName` command-line entry.
type AliasPair struct {
	RealName  string
	AliasName string
}

// Options is the immutable, fully-resolved configuration record the core
// consumes (spec.md §6). It is never mutated after NewOptions returns;
// every component downstream treats it as a read-only collaborator.
type Options struct {
	outputKind                    OutputKind
	architecture                  CPU
	subArchitecture                CPUSubtype
	forceSubtypeAll               bool
	allowSubArchitectureMismatches bool

	undefinedTreatment             UndefinedTreatment
	weakReferenceMismatchTreatment WeakReferenceMismatchTreatment
	commonsMode                    CommonsMode

	deadCodeStrip        bool
	allowDeadDuplicates  bool
	interposeMode        InterposeMode
	allowTextRelocs      bool
	keepPrivateExterns   bool

	exportMode  ExportMode
	exportList  []string
	dontExportList []string

	baseAddress    uint64
	maxAddress     uint64
	segmentAlignment uint64
	customSegmentAddresses map[string]uint64
	customSectionAlignments map[SectionKey]uint8

	mergeZeroFill             bool
	pageAlignDataAtoms        bool
	optimizeZeroFill          bool
	makeCompressedDyldInfo    bool
	sharedRegionEligible      bool
	addCompactUnwindEncoding  bool
	positionIndependentExecutable bool

	librarySearchMode LibrarySearchMode

	aliases          []AliasPair
	forceWeak        []string
	forceNotWeak     []string
	reExport         []string
	interposeList    []string
	initialUndefines []string
	orderFile        []string

	fatalWarnings bool
}

// Option mutates an in-progress Options value; NewOptions applies each in
// order and returns the frozen result.
type Option func(*Options)

func OutputKindOpt(k OutputKind) Option { return func(o *Options) { o.outputKind = k } }

func Architecture(cpu CPU, sub CPUSubtype) Option {
	return func(o *Options) { o.architecture = cpu; o.subArchitecture = sub }
}

func ForceSubtypeAll() Option { return func(o *Options) { o.forceSubtypeAll = true } }

func AllowSubArchitectureMismatches() Option {
	return func(o *Options) { o.allowSubArchitectureMismatches = true }
}

func UndefinedTreatmentOpt(t UndefinedTreatment) Option {
	return func(o *Options) { o.undefinedTreatment = t }
}

func WeakReferenceMismatchTreatmentOpt(t WeakReferenceMismatchTreatment) Option {
	return func(o *Options) { o.weakReferenceMismatchTreatment = t }
}

func CommonsModeOpt(m CommonsMode) Option { return func(o *Options) { o.commonsMode = m } }

func DeadCodeStrip() Option { return func(o *Options) { o.deadCodeStrip = true } }

func AllowDeadDuplicates() Option { return func(o *Options) { o.allowDeadDuplicates = true } }

func Interpose(m InterposeMode, names ...string) Option {
	return func(o *Options) { o.interposeMode = m; o.interposeList = append(o.interposeList, names...) }
}

func AllowTextRelocs() Option { return func(o *Options) { o.allowTextRelocs = true } }

func KeepPrivateExterns() Option { return func(o *Options) { o.keepPrivateExterns = true } }

func ExportSome(names ...string) Option {
	return func(o *Options) { o.exportMode = ExportModeSome; o.exportList = append(o.exportList, names...) }
}

func DontExportSome(names ...string) Option {
	return func(o *Options) {
		o.exportMode = ExportModeDontExportSome
		o.dontExportList = append(o.dontExportList, names...)
	}
}

func BaseAddress(addr uint64) Option   { return func(o *Options) { o.baseAddress = addr } }
func MaxAddress(addr uint64) Option    { return func(o *Options) { o.maxAddress = addr } }
func SegmentAlignment(a uint64) Option { return func(o *Options) { o.segmentAlignment = a } }

func CustomSegmentAddress(name string, addr uint64) Option {
	return func(o *Options) {
		if o.customSegmentAddresses == nil {
			o.customSegmentAddresses = map[string]uint64{}
		}
		o.customSegmentAddresses[name] = addr
	}
}

func CustomSectionAlignment(seg, sect string, power uint8) Option {
	return func(o *Options) {
		if o.customSectionAlignments == nil {
			o.customSectionAlignments = map[SectionKey]uint8{}
		}
		o.customSectionAlignments[SectionKey{Segment: seg, Section: sect}] = power
	}
}

func MergeZeroFill() Option            { return func(o *Options) { o.mergeZeroFill = true } }
func PageAlignDataAtoms() Option       { return func(o *Options) { o.pageAlignDataAtoms = true } }
func OptimizeZeroFill() Option         { return func(o *Options) { o.optimizeZeroFill = true } }
func MakeCompressedDyldInfo() Option   { return func(o *Options) { o.makeCompressedDyldInfo = true } }
func SharedRegionEligible() Option     { return func(o *Options) { o.sharedRegionEligible = true } }
func AddCompactUnwindEncoding() Option { return func(o *Options) { o.addCompactUnwindEncoding = true } }
func PositionIndependentExecutable() Option {
	return func(o *Options) { o.positionIndependentExecutable = true }
}

func LibrarySearchModeOpt(m LibrarySearchMode) Option {
	return func(o *Options) { o.librarySearchMode = m }
}

func Alias(real, alias string) Option {
	return func(o *Options) { o.aliases = append(o.aliases, AliasPair{RealName: real, AliasName: alias}) }
}

func ForceWeak(names ...string) Option {
	return func(o *Options) { o.forceWeak = append(o.forceWeak, names...) }
}

func ForceNotWeak(names ...string) Option {
	return func(o *Options) { o.forceNotWeak = append(o.forceNotWeak, names...) }
}

func ReExport(names ...string) Option {
	return func(o *Options) { o.reExport = append(o.reExport, names...) }
}

func InitialUndefines(names ...string) Option {
	return func(o *Options) { o.initialUndefines = append(o.initialUndefines, names...) }
}

func OrderFile(symbols ...string) Option {
	return func(o *Options) { o.orderFile = append(o.orderFile, symbols...) }
}

func FatalWarnings() Option { return func(o *Options) { o.fatalWarnings = true } }

// NewOptions applies defaults grounded in ld64's own (segmentAlignment
// 0x1000 / 4K page, dylib+archive-per-dir search, error on undefineds) and
// then each supplied Option, in order, and returns the frozen result.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		outputKind:        OutputDynamicExecutable,
		undefinedTreatment: UndefinedError,
		segmentAlignment:  0x1000,
		librarySearchMode: LibrarySearchDylibAndArchiveEachDir,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

func (o *Options) OutputKind() OutputKind { return o.outputKind }
func (o *Options) Architecture() CPU      { return o.architecture }
func (o *Options) SubArchitecture() CPUSubtype { return o.subArchitecture }
func (o *Options) ForceSubtypeAll() bool  { return o.forceSubtypeAll }

func (o *Options) UndefinedTreatment() UndefinedTreatment { return o.undefinedTreatment }
func (o *Options) WeakReferenceMismatchTreatment() WeakReferenceMismatchTreatment {
	return o.weakReferenceMismatchTreatment
}
func (o *Options) CommonsMode() CommonsMode { return o.commonsMode }

func (o *Options) DeadCodeStrip() bool       { return o.deadCodeStrip }
func (o *Options) AllowDeadDuplicates() bool { return o.allowDeadDuplicates }
func (o *Options) InterposeMode() InterposeMode { return o.interposeMode }
func (o *Options) AllowTextRelocs() bool     { return o.allowTextRelocs }
func (o *Options) KeepPrivateExterns() bool  { return o.keepPrivateExterns }

func (o *Options) ExportMode() ExportMode  { return o.exportMode }
func (o *Options) ExportList() []string    { return o.exportList }
func (o *Options) DontExportList() []string { return o.dontExportList }

func (o *Options) BaseAddress() uint64      { return o.baseAddress }
func (o *Options) MaxAddress() uint64       { return o.maxAddress }
func (o *Options) SegmentAlignment() uint64 { return o.segmentAlignment }

func (o *Options) CustomSegmentAddress(name string) (uint64, bool) {
	addr, ok := o.customSegmentAddresses[name]
	return addr, ok
}

func (o *Options) CustomSectionAlignment(seg, sect string) (uint8, bool) {
	power, ok := o.customSectionAlignments[SectionKey{Segment: seg, Section: sect}]
	return power, ok
}

func (o *Options) MergeZeroFill() bool           { return o.mergeZeroFill }
func (o *Options) PageAlignDataAtoms() bool      { return o.pageAlignDataAtoms }
func (o *Options) OptimizeZeroFill() bool        { return o.optimizeZeroFill }
func (o *Options) MakeCompressedDyldInfo() bool   { return o.makeCompressedDyldInfo }
func (o *Options) SharedRegionEligible() bool     { return o.sharedRegionEligible }
func (o *Options) AddCompactUnwindEncoding() bool { return o.addCompactUnwindEncoding }
func (o *Options) PositionIndependentExecutable() bool {
	return o.positionIndependentExecutable
}

func (o *Options) LibrarySearchMode() LibrarySearchMode { return o.librarySearchMode }

func (o *Options) Aliases() []AliasPair       { return o.aliases }
func (o *Options) ForceWeak() []string        { return o.forceWeak }
func (o *Options) ForceNotWeak() []string     { return o.forceNotWeak }
func (o *Options) ReExport() []string         { return o.reExport }
func (o *Options) InterposeList() []string    { return o.interposeList }
func (o *Options) InitialUndefines() []string { return o.initialUndefines }
func (o *Options) OrderFile() []string        { return o.orderFile }
func (o *Options) FatalWarnings() bool        { return o.fatalWarnings }
