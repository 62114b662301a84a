package resolver

// Name prefixes the classifier matches against demangled frames and formal
// template parameters.
var (
	stlContainerTypes = []string{
		"std::_Vector_base",
		"std::__u::_Vector_base",
		"std::_Deque_base",
		"std::__u::_Deque_base",
		"std::_Rb_tree",
		"std::__u::_Rb_tree",
		"std::__u::__tree",
		"std::__tree",
		"std::__detail::_Hashtable_alloc",
		"std::__u::__detail::_Hashtable_alloc",
		"std::_Fwd_list_base",
		"std::__u::_Fwd_list_base",
		"std::__cxx11::_List_base",
		"std::__u::__cxx11::list",
		"absl::FixedArray",
		"xalanc_1_10::XalanVector",
	}

	// containers resolved from the allocation frame itself
	stlLeafContainerTypes = []string{
		"std::vector",
		"std::__u::vector",
		"std::deque",
		"std::__u::deque",
		"std::set",
		"std::__u::set",
		"std::forward_list",
		"std::__u::forward_list",
		"std::__cxx11::list",
		"std::__u::__cxx11::list",
		"std::stack",
		"std::__u::stack",
		"std::queue",
		"std::__u::queue",
		"std::priority_queue",
		"std::__u::priority_queue",
		"std::map",
		"std::__u::map",
		"std::multimap",
		"std::__u::multimap",
		"std::multiset",
		"std::__u::multiset",
		"std::flat_multiset",
		"std::__u::flat_multiset",
		"std::flat_multimap",
		"std::__u::flat_multimap",
		"std::unordered_set",
		"std::__u::unordered_set",
		"std::unordered_map",
		"std::__u::unordered_map",
		"std::unordered_multiset",
		"std::__u::unordered_multiset",
		"std::unordered_multimap",
		"std::__u::unordered_multimap",
	}

	// mangled
	smartPointerFunctions = []string{
		"_ZSt11make_unique",
		"_ZSt11make_shared",
		"_ZNSt3__u15allocate_shared",
		"_ZNSt3__u11make_unique",
	}

	adtContainerTypes = []string{
		"llvm::SmallVectorTemplateBase<",
		"llvm::PagedVector<",
		"llvm::SmallPtrSetImpl<",
		"llvm::StringMap<",
		"llvm::ImutAVLFactory<",
		"absl::inlined_vector_internal::",
	}

	adtDenseContainerTypes = []string{
		"llvm::DenseMapBase",
	}

	charContainerLeafFrames = []string{
		"std::__cxx11::basic_string",
		"std::basic_string",
		"absl::cord_internal::",
		"std::__u::basic_string",
		"absl::Cord::",
	}

	swissMapTypes = []string{
		"absl::container_internal::raw_hash_map<",
		"absl::container_internal::raw_hash_set<",
	}

	flatHashPolicies = []string{
		"absl::container_internal::FlatHashMapPolicy",
		"absl::container_internal::FlatHashSetPolicy",
	}

	btreeTypes = []string{
		"absl::container_internal::btree<",
	}

	btreeParamTypes = []string{
		"absl::container_internal::set_params<",
		"absl::container_internal::map_params<",
	}

	specialAllocatingFunctions = []string{
		"std::get_temporary_buffer",
		"std::__u::get_temporary_buffer",
	}

	allocatorWrappers = []string{
		"std::allocator",
		"std::__u::allocator",
		"std::__new_allocator",
		"muppet::instant::PolymorphicAllocator",
		"xalanc_1_10::MemoryManagedConstructionTraits",
	}

	abslContainerInternal = "absl::container_internal::"

	// functions the profiler inserts around container bookkeeping allocations
	memprofInsertedFunctions = []string{
		"__memprof_ctrl_alloc",
	}
)

const (
	memprofContainerName  = "__memprof::abseil_container_internal::raw_hash_set"
	fallbackContainerName = "unknown"
	heapAllocContainer    = "none"

	btreeGenerationMarker = "absl::container_internal::btree_iterator_generation_info_enabled"
	btreeFieldTypeSuffix  = "::field_type"
	nodeSlotsConstant     = "kNodeSlots"
	alignmentConstant     = "Alignment"
)
