package store

import (
	"time"

	"quantbridge/pkg/series"
)

// barRecord 主存文件中单根K线的列式记录
// 时间戳按毫秒UTC存储，时区信息记录在每行的 tz 列中
type barRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
	Timezone  string  `parquet:"tz,optional"`
}

func toRecords(bars []series.Bar, tz string) []barRecord {
	records := make([]barRecord, len(bars))
	for i, bar := range bars {
		records[i] = barRecord{
			Timestamp: bar.Timestamp.UnixMilli(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
			Timezone:  tz,
		}
	}
	return records
}

func fromRecords(records []barRecord, loc *time.Location) []series.Bar {
	bars := make([]series.Bar, len(records))
	for i, rec := range records {
		bars[i] = series.Bar{
			Timestamp: time.UnixMilli(rec.Timestamp).In(loc),
			Open:      rec.Open,
			High:      rec.High,
			Low:       rec.Low,
			Close:     rec.Close,
			Volume:    rec.Volume,
		}
	}
	return bars
}
