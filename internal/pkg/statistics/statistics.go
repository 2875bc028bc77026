package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/internal/pkg/cache"
	"github.com/sciencedream/jukustream/internal/pkg/database"
)

const (
	CacheKeyUsersTotal  = "statistics:users:total"
	CacheKeyVideosTotal = "statistics:videos:total"
	CacheKeySalesDaily  = "statistics:sales:daily:%s" // Format with date YYYY-MM-DD
	CacheExpiration     = 30 * time.Minute
)

// StatisticsData holds the dashboard numbers.
type StatisticsData struct {
	TotalUsers  int
	TotalVideos int
	TodaySales  int64
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached statistics are stale.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has passed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all statistics and stores them in the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalVideos int64
	if err := db.Model(&models.Video{}).Count(&totalVideos).Error; err != nil {
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todaySales int64
	if err := db.Model(&models.Sale{}).
		Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&todaySales).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyVideosTotal, strconv.FormatInt(totalVideos, 10), CacheExpiration); err != nil {
		return err
	}
	dailyKey := fmt.Sprintf(CacheKeySalesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todaySales, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsersTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetTotalVideos returns the total number of videos from cache or database
func GetTotalVideos() int {
	val, err := cache.Get(CacheKeyVideosTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Video{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total videos: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyVideosTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total videos: %v", err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetTodaySales returns today's sale revenue from cache or database
func GetTodaySales() int64 {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeySalesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var total int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Sale{}).
			Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&total).Error; err != nil {
			log.Printf("Error summing today's sales: %v", err)
			return 0
		}
		if err := cache.Set(dailyKey, strconv.FormatInt(total, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's sales: %v", err)
		}
		return total
	}

	total, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return total
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:  GetTotalUsers(),
		TotalVideos: GetTotalVideos(),
		TodaySales:  GetTodaySales(),
	}
}
