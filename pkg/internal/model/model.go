package model

// All 返回全部需要建表/迁移的模型，顺序满足外键引用方向.
func All() []any {
	return []any{
		&PersistentIdentifier{},
		&PIDRedirect{},
		&PIDSequence{},
		&Bucket{},
		&ObjectVersion{},
		&MultipartUpload{},
		&Record{},
		&RecordRevision{},
		&RecordsBuckets{},
		&Deposit{},
		&VersioningHead{},
		&VersioningChild{},
		&Community{},
		&CommunityMembership{},
		&InclusionRequest{},
	}
}
