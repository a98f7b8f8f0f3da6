package domain

// LookupStatus 是单个标题的查找结论。
type LookupStatus string

const (
	LookupFound    LookupStatus = "found"
	LookupNotFound LookupStatus = "not_found"
	LookupFailed   LookupStatus = "failed"
)

// ResultSet 是一次批处理的结果：与输入标题 1:1 且保持输入顺序。
//
// Query/Records/Status 三个切片长度恒相等；Records[i] 对应 Query[i]。
type ResultSet struct {
	Query   []string
	Records []MovieRecord
	Status  []LookupStatus
}

// Append 追加一条结果（保持三列等长）。
func (rs *ResultSet) Append(query string, rec MovieRecord, st LookupStatus) {
	rs.Query = append(rs.Query, query)
	rs.Records = append(rs.Records, rec)
	rs.Status = append(rs.Status, st)
}

func (rs ResultSet) Len() int { return len(rs.Records) }

// Count 统计某个状态的条目数。
func (rs ResultSet) Count(st LookupStatus) int {
	n := 0
	for _, s := range rs.Status {
		if s == st {
			n++
		}
	}
	return n
}
